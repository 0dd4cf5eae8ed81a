package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// PlayerScript exits immediately, like a player that finished playback.
const PlayerScript = `#!/bin/sh
exit 0
`

// HandBrakeScript answers "--scan" with two titles on stderr. Images whose
// name contains "broken" fail the scan; images named "empty" report no
// titles. Encodes touch the --output file.
const HandBrakeScript = `#!/bin/sh
input=""
output=""
scan=0
while [ $# -gt 0 ]; do
  case "$1" in
    -i|--input) input="$2"; shift ;;
    -o|--output) output="$2"; shift ;;
    --scan) scan=1 ;;
  esac
  shift
done
if [ "$scan" = 1 ]; then
  case "$input" in
    *broken*) echo "libdvdnav: can't open $input" >&2; exit 3 ;;
    *empty*) echo "+ scan done" >&2; exit 0 ;;
  esac
  echo "[12:00:00] scan: DVD has 2 title(s)" >&2
  echo "+ title 1:" >&2
  echo "  + duration: 01:52:30" >&2
  echo "+ title 2:" >&2
  echo "  + duration: 00:03:10" >&2
  exit 0
fi
echo "Encoding: task 1 of 1, 50.00 %"
echo "Encoding: task 1 of 1, 100.00 %"
: > "$output"
exit 0
`

// WriteScript writes an executable script and returns its path.
func WriteScript(t testing.TB, path, body string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", path, err)
	}
	return path
}
