package main

import "github.com/oshokin/trackguard/cmd/trackguard-console/cmd"

func main() {
	cmd.Execute()
}
