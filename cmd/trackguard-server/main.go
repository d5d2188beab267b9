package main

import "github.com/oshokin/trackguard/cmd/trackguard-server/cmd"

func main() {
	cmd.Execute()
}
