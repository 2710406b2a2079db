package main

import "go.pilab.hu/solosso/cmd/ssoctl/cmd"

func main() {
	cmd.Execute()
}
