package assoc_test

import (
	"fmt"

	"github.com/djdv/go-assoc"
)

func ExampleStore() {
	type (
		Request struct{ path string }
		Context struct{ spans []string }
	)
	store := assoc.NewStore[Request, *Context]()
	defer store.Close()
	var (
		req   = &Request{path: "/"}
		twin  = &Request{path: "/"}
		start = func(*Request) (*Context, error) {
			return &Context{spans: []string{"server"}}, nil
		}
	)
	first, err := store.ComputeIfAbsent(req, start)
	if err != nil {
		panic(err)
	}
	again, _ := store.ComputeIfAbsent(req, start)
	other, _ := store.ComputeIfAbsent(twin, start)
	fmt.Println("same request:", first == again)
	fmt.Println("equal request:", first == other)
	// Output:
	// same request: true
	// equal request: false
}

func ExampleField() {
	type Conn struct{ addr string }
	retries := assoc.NewField[Conn, int]()
	defer retries.Close()
	conn := &Conn{addr: "localhost:4317"}
	for range 3 {
		count, _ := retries.Get(conn)
		retries.Set(conn, count+1)
	}
	count, _ := retries.Get(conn)
	fmt.Println(conn.addr, "retries:", count)
	// Output:
	// localhost:4317 retries: 3
}
