package main

import "app-bootstrap/cmd"

func main() {
	cmd.Execute()
}
