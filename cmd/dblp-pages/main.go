// dblp-pages reads page ranges like "12-15" or "i-xii, 1-10", one per line,
// and writes the number of pages. Unparseable lines yield an empty line.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/miku/dblpkit/normal"
	log "github.com/sirupsen/logrus"
)

var (
	showInput = flag.Bool("v", false, "prefix output with the input, tab separated")
	normalize = flag.Bool("n", false, "collapse whitespace before counting")
)

func main() {
	flag.Parse()
	var (
		scanner = bufio.NewScanner(os.Stdin)
		bw      = bufio.NewWriter(os.Stdout)
	)
	defer bw.Flush()
	for scanner.Scan() {
		line := scanner.Text()
		if *normalize {
			line = normal.CollapseSpace(line)
		}
		count := normal.CountPages(line)
		if *showInput {
			fmt.Fprintf(bw, "%s\t%s\n", line, count)
		} else {
			fmt.Fprintln(bw, count)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatal(err)
	}
}
