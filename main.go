package main

import "github.com/vibast-solutions/ms-go-uptask/cmd"

func main() {
	cmd.Execute()
}
