package main

import "github.com/ValentinKolb/dbsrv/cmd"

func main() {
	cmd.Execute()
}
