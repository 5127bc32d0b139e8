// Command nayana tracks gaze direction from a webcam or video file.
package main

func main() {
	Execute()
}
