// Command courier serves multi-platform messaging webhooks.
package main

func main() {
	Execute()
}
