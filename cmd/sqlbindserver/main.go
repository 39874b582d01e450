// Command sqlbindserver exposes a SQLite database over the sqlbind wire
// protocol.
package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	_ "github.com/anacrolix/envpprof"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"sqlbind"
)

func refsHandler(s *sqlbind.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for ref, val := range s.Refs() {
			fmt.Fprintf(w, "%d: %#v\n\n", ref, val)
		}
	})
}

func main() {
	log.SetFlags(log.Flags() | log.Llongfile)
	dsn := flag.String("dsn", "", "sqlite3 dsn")
	addr := flag.String("addr", ":6033", "listen")
	statusAddr := flag.String("statusAddr", "", "optional http status listen address")
	flag.Parse()
	if flag.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "unexpected positional arguments\n")
		os.Exit(2)
	}
	db, err := sqlx.Open("sqlite3", *dsn)
	if err != nil {
		log.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	service := &sqlbind.Service{DB: db, Expiry: time.Minute}
	if *statusAddr != "" {
		http.Handle("/refs", refsHandler(service))
		go http.ListenAndServe(*statusAddr, nil)
	}
	l, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatal(err)
	}
	server := &sqlbind.Server{Service: service}
	log.Print(server.Serve(l))
}
