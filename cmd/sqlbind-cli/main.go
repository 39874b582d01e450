// Command sqlbind-cli runs queries against a sqlbind server and prints the
// buffered result sets, emulating the sqlite3 command-line utility where
// reasonable.
package main

import (
	"fmt"
	"log"
	"os"

	_ "github.com/anacrolix/envpprof"
	"github.com/docopt/docopt-go"

	"sqlbind"
)

const doc = "" +
	"Usage: sqlbind-cli [--dsn=<dsn>] <query>...\n" +
	"Options:\n" +
	"  --dsn=<dsn> server address  [default: localhost:6033]"

func main() {
	log.SetFlags(log.Flags() | log.Lshortfile)
	opts, err := docopt.Parse(doc, nil, true, "", false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error parsing options: %s", err)
		os.Exit(2)
	}
	cl, err := sqlbind.Dial(opts["--dsn"].(string))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error connecting: %s\n", err)
		os.Exit(1)
	}
	defer cl.Close()
	for _, arg := range opts["<query>"].([]string) {
		res, err := cl.Query(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error executing sql: %s\n", err)
			os.Exit(1)
		}
		cur := sqlbind.NewCursor(res)
		for ; cur.Valid(); cur.Next() {
			for i := range res.Columns() {
				if i != 0 {
					fmt.Printf("|")
				}
				var field string
				if cur.Value(i, &field) {
					fmt.Printf("%s", field)
				}
			}
			fmt.Printf("\n")
		}
	}
}
