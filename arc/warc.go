package arc

// helpers to write out raw HTTP responses to noddy .warc files, so a
// crawl run can be replayed or re-parsed later without refetching.

import (
	"compress/gzip"
	"crypto/md5"
	"encoding/hex"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/bcampbell/warc"
	"github.com/flytam/filenamify"
)

// eg "abcdefg.foo" returns "a/ab/abc"
func spreadPath(name string) string {
	numChunks := 3 // how many subdirs to use
	chunkSize := 1 // num chars per subdir

	if len(name) < numChunks*chunkSize {
		panic("name too short")
	}

	parts := make([]string, numChunks)
	for chunk := 0; chunk < numChunks; chunk++ {
		parts[chunk] = name[0 : (chunk+1)*chunkSize]
	}
	return path.Join(parts...)
}

// ArchiveResponse writes resp out as a gzipped .warc under
// warcDir/<host>/<spread>/<md5>.warc.gz. The host segment is
// sanitised so odd ports/userinfo can't produce an unwritable dir.
func ArchiveResponse(warcDir string, resp *http.Response, srcURL string, timeStamp time.Time) error {
	u, err := url.Parse(srcURL)
	if err != nil {
		return err
	}

	hostDir, err := filenamify.Filenamify(u.Host, filenamify.Options{})
	if err != nil {
		return err
	}

	hasher := md5.New()
	hasher.Write([]byte(srcURL))
	filename := hex.EncodeToString(hasher.Sum(nil)) + ".warc.gz"

	// .../www.example.com/1/12/123/<md5>.warc.gz
	dir := path.Join(warcDir, hostDir, spreadPath(filename))
	err = os.MkdirAll(dir, 0777) // let umask cull the perms down...
	if err != nil {
		return err
	}

	outfile, err := os.Create(path.Join(dir, filename))
	if err != nil {
		return err
	}
	defer outfile.Close()

	gzw := gzip.NewWriter(outfile)
	defer gzw.Close()

	return warc.Write(gzw, resp, srcURL, timeStamp)
}
