package main

import "github.com/Digital-Shane/guide-tidy/internal/cmd"

func main() {
	cmd.Execute()
}
