package main

import "github.com/themateplatform/codemate/cmd"

func main() {
	cmd.Execute()
}
