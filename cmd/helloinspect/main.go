// helloinspect parses a TLS ClientHello record.
//
// Usage:
//
//   helloinspect -hex <hex-encoded-record>
//   helloinspect < record.bin
//
// With -hex we decode the argument, otherwise we read the raw
// record from the stdin. We print the parsed hello as JSON on the
// stdout, along with whether the client offers TLS 1.3.
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bassosimone/acceptx/internal/helloparse"
	"github.com/m-lab/go/rtx"
)

func main() {
	flagHex := flag.String("hex", "", "Hex encoded ClientHello record")
	flag.Parse()
	var (
		data []byte
		err  error
	)
	if *flagHex != "" {
		data, err = hex.DecodeString(strings.TrimSpace(*flagHex))
		rtx.Must(err, "cannot decode hex input")
	} else {
		data, err = io.ReadAll(os.Stdin)
		rtx.Must(err, "cannot read stdin")
	}
	info, err := helloparse.Parse(data)
	rtx.Must(err, "helloparse.Parse failed")
	prettyprint(info)
	prettyprint(map[string]bool{"supportsTLS13": info.SupportsTLS13()})
}

func prettyprint(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	rtx.Must(err, "json.Marshal failed")
	fmt.Printf("%s\n", string(data))
}
