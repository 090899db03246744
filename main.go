// Command tscpaths rewrites TypeScript path aliases in compiled output.
package main

import (
	"tscpaths/cmd"
)

func main() {
	cmd.Execute()
}
