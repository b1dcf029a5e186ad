package main

import "dltsctl/cmd"

func main() {
	cmd.Execute()
}
