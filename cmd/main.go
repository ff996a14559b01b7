package main

import "observe/dashboard/internal/cli"

func main() {
	cli.Execute()
}
