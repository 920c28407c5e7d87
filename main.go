package main

import "github.com/smartpresence/attendance-service/cmd"

func main() {
	cmd.Execute()
}
