package main

import "moodle-sync/cmd"

func main() {
	cmd.Execute()
}
