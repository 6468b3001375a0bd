package main

import "github.com/mrbooshehri/qix-sched/cmd"

func main() {
	cmd.Execute()
}
