// docchat is a retrieval-augmented chat service over uploaded documents.
package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/kart-io/docchat/internal/docchat"
)

func main() {
	docchat.NewApp().Run()
}
