package main

import (
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/mickael-palma-wttj/wttj-metrics-sub001/cmd"
)

func main() {
	cmd.Execute()
}
