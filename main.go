package main

import "github.com/andresmejia3/mouthswap/cmd"

func main() {
	cmd.Execute()
}
