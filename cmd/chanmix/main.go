// ABOUTME: Entry point for the chanmix command
// ABOUTME: Hands control to the cobra command tree
package main

func main() {
	Execute()
}
