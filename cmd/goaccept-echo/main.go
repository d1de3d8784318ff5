// Command goaccept-echo is a line echo server that shows how to protect an
// accept loop with backpressure and accept error handling.
package main

func main() {
	Execute()
}
