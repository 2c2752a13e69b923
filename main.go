package main

import "github.com/DevHack1010/NemHemAI/cmd"

func main() {
	cmd.Execute()
}
