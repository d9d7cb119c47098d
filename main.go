package main

import "github.com/Udit-Chaturvedi/Purshottam-Transport-ERP/cmd"

func main() {
	cmd.Execute()
}
