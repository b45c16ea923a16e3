package main

import "github.com/NtWriteCode/fdroid-github-tracker/cmd/fdroid-tracker/cmd"

func main() {
	cmd.Execute()
}
