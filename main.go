package main

import "github.com/netstacklab/minnow/cmd"

func main() {
	cmd.Execute()
}
