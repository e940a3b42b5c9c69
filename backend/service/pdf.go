package service

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disablePDFConfig sync.Once

// CountPDFPages returns the number of pages in a PDF document
func CountPDFPages(content []byte) (pages int, err error) {
	// malformed uploads can panic the parser
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	// pdfcpu writes a config dir under the user's home unless told not to
	disablePDFConfig.Do(api.DisableConfigDir)

	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return api.PageCount(bytes.NewReader(content), conf)
}
