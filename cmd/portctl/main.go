// Command portctl runs and pokes a simulated smart-port controller.
package main

func main() {
	Execute()
}
