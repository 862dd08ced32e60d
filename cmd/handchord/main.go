// Command handchord runs the gesture-played instrument.
package main

func main() {
	Execute()
}
