package main

import "github.com/chrisdamba/trafikcam/cmd"

func main() {
	cmd.Execute()
}
