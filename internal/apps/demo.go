// Package apps contains the applications served by httpgate: a set of demo
// handlers exercising every body shape, and static applications declared in
// the configuration file.
package apps

import "github.com/stealthrocket/httpgate/internal/gateway"

// Demo returns the demo handlers, in registration order.
func Demo() []gateway.Handler {
	return []gateway.Handler{HelloHeaders, Hello, HelloLazy, HelloLine}
}

// HelloHeaders responds with a list of two chunks after a handful of
// arbitrary headers.
func HelloHeaders(req *gateway.Request, start gateway.StartFunc) (gateway.Body, error) {
	err := start("200 ok", gateway.Headers{
		{Name: "Foo", Value: "Bar"},
		{Name: "Blah", Value: "Blubb"},
		{Name: "Spam", Value: "Eggs"},
		{Name: "Blurg", Value: "asdasjdaskdasdjj asdk jaks / /a jaksdjkas jkasd jkasdj "},
		{Name: "asd2easdasdjaksdjdkskjkasdjka", Value: "oasdjkadk kasdk k k k k k "},
	})
	if err != nil {
		return nil, err
	}
	return gateway.Chunks{[]byte("hello"), []byte("world")}, nil
}

// Hello responds with a single blob.
func Hello(req *gateway.Request, start gateway.StartFunc) (gateway.Body, error) {
	if err := start("200 ok", nil); err != nil {
		return nil, err
	}
	return gateway.Blob("hello"), nil
}

// HelloLazy commits its response when the first chunk is pulled and produces
// a body of the declared length in three steps.
func HelloLazy(req *gateway.Request, start gateway.StartFunc) (gateway.Body, error) {
	return gateway.Generate(func(yield func([]byte, error) bool) {
		if err := start("200 abc", gateway.Headers{{Name: "Content-Length", Value: "12"}}); err != nil {
			yield(nil, err)
			return
		}
		for _, chunk := range []string{"Hello", " World", "\n"} {
			if !yield([]byte(chunk), nil) {
				return
			}
		}
	}), nil
}

// HelloLine responds with a list holding a single line.
func HelloLine(req *gateway.Request, start gateway.StartFunc) (gateway.Body, error) {
	if err := start("200 ok", nil); err != nil {
		return nil, err
	}
	return gateway.Chunks{[]byte("hello\n")}, nil
}
