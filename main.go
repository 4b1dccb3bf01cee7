package main

import "github.com/naka-gawa/repo-quality/cmd"

func main() {
	cmd.Execute()
}
