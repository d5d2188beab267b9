// Package audio plays the alarm cue shown with a new emergency.
package audio
