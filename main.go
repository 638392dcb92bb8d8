package main

import "github.com/edgeflare/dbapi/cmd/dbapi"

func main() {
	dbapi.Main()
}
