package main

import "github.com/atvirokodosprendimai/netmodel/cmd"

func main() {
	cmd.Execute()
}
