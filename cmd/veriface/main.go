// Command veriface runs the face verification platform.
package main

func main() {
	execute()
}
