package job

import (
	"fmt"
	"strings"
)

// argv[0] is the program name and is ignored by the interpreter.
const programName = "gs"

// Export describes a device output requested through CreateOutput.
type Export struct {
	Device     string // defaults to xpswrite
	OutputFile string // defaults to a temp file; may contain a %d page pattern
	FirstPage  int
	LastPage   int
	Resolution int
	// Media size in points. Zero keeps the document's own size.
	WidthPoints  float64
	HeightPoints float64
	FitPage      bool
}

// DefaultExportDevice is used when Export.Device is empty.
const DefaultExportDevice = "xpswrite"

func pageCountArgs(path string) []string {
	return []string{
		programName,
		"-dNODISPLAY",
		"-dNOPAUSE",
		"-dBATCH",
		"-sFile=" + path,
		"--permit-file-read=" + path,
		"-c", "File (r) file runpdfbegin pdfpagecount = quit",
	}
}

func distillArgs(output string) []string {
	return []string{
		programName,
		"-dNOPAUSE",
		"-dBATCH",
		"-dSAFER",
		"-sDEVICE=pdfwrite",
		"-o", output,
	}
}

func exportArgs(input string, e Export) []string {
	args := []string{programName, "-sDEVICE=" + e.Device}
	if e.Resolution > 0 {
		args = append(args, fmt.Sprintf("-r%d", e.Resolution))
	}
	args = append(args, "-dNOPAUSE", "-dBATCH")
	if e.FirstPage > 0 {
		args = append(args, fmt.Sprintf("-dFirstPage=%d", e.FirstPage))
	}
	if e.LastPage > 0 {
		args = append(args, fmt.Sprintf("-dLastPage=%d", e.LastPage))
	}
	if e.WidthPoints > 0 && e.HeightPoints > 0 {
		args = append(args,
			fmt.Sprintf("-dDEVICEWIDTHPOINTS=%g", e.WidthPoints),
			fmt.Sprintf("-dDEVICEHEIGHTPOINTS=%g", e.HeightPoints),
			"-dFIXEDMEDIA",
		)
		if e.FitPage {
			args = append(args, "-dFitPage")
		}
	}
	return append(args, "-o", e.OutputFile, "-f", input)
}

func displayArgs(input string, s renderState, format uint32) []string {
	args := []string{
		programName,
		"-dNOPAUSE",
		fmt.Sprintf("-r%d", s.resolution),
	}
	if s.antialias {
		args = append(args, "-dTextAlphaBits=4", "-dGraphicsAlphaBits=4")
	}
	return append(args,
		"-sDEVICE=display",
		fmt.Sprintf("-dDisplayFormat=%d", format),
		fmt.Sprintf("-dFirstPage=%d", s.first),
		fmt.Sprintf("-dLastPage=%d", s.last),
		"-f", input,
	)
}

// commandLine renders args the way the engine log echoes them.
func commandLine(args []string) string {
	return "Command Line: " + strings.Join(args, " ") + "\n"
}
