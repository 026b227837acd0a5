package main

import "github.com/Davincible/byok-router/cmd"

func main() {
	cmd.Execute()
}
