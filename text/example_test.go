package text_test

import (
	"bufio"
	"bytes"
	"fmt"
	"log"
	"strings"

	"github.com/pior/memcache-text/text"
)

func ExampleWriteRequest() {
	req := text.NewStoreRequest(text.CmdSet, "greeting", []byte("hello"), 0, 60)

	var buf bytes.Buffer
	if err := text.WriteRequest(&buf, req); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%q", buf.String())
	// Output: "set greeting 0 60 5\r\nhello\r\n"
}

func ExampleReadGetResponse() {
	r := bufio.NewReader(strings.NewReader("VALUE foo 0 3\r\nbar\r\nEND\r\n"))

	values, err := text.ReadGetResponse(r, []string{"foo", "baz"})
	if err != nil {
		log.Fatal(err)
	}

	for _, v := range values {
		fmt.Printf("%s=%s\n", v.Key, v.Data)
	}
	// Output: foo=bar
}

func ExampleReadArithResponse() {
	r := bufio.NewReader(strings.NewReader("NOT_FOUND\r\n"))

	value, found, err := text.ReadArithResponse(r)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(value, found)
	// Output: 0 false
}
