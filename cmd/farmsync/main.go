package main

import "github.com/farmkonnect/reconcile/internal/cli"

func main() {
	cli.Execute()
}
