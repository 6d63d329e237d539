/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "linebridge/cmd"

func main() {
	cmd.Execute()
}
