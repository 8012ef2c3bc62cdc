package pdf

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dslipak/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// permExtract is the /P bit that allows copying text and graphics.
const permExtract = 1 << 4

// ErrExtractionDenied is returned for documents whose permissions forbid
// extracting their content.
var ErrExtractionDenied = errors.New("document does not permit text extraction")

// Credentials are the passwords tried on encrypted documents.
type Credentials struct {
	UserPassword  string `json:"user_password,omitempty"  yaml:"user_password,omitempty"`
	OwnerPassword string `json:"owner_password,omitempty" yaml:"owner_password,omitempty"`
}

// pdfcpuConfig returns a relaxed pdfcpu configuration carrying creds.
func pdfcpuConfig(creds Credentials) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if creds.UserPassword != "" {
		conf.UserPW = creds.UserPassword
	}
	if creds.OwnerPassword != "" {
		conf.OwnerPW = creds.OwnerPassword
	}
	return conf
}

// IsPasswordError reports whether err looks like a failure caused by
// encryption rather than a damaged file.
func IsPasswordError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, keyword := range []string{"password", "encrypt", "decrypt"} {
		if strings.Contains(msg, keyword) {
			return true
		}
	}
	return false
}

// checkPermissions returns ErrExtractionDenied if the trailer of r carries an
// encryption dictionary without the extract permission.
func checkPermissions(r *pdf.Reader) error {
	enc := r.Trailer().Key("Encrypt")
	if enc.IsNull() {
		return nil
	}
	p := enc.Key("P")
	if p.IsNull() {
		return nil
	}
	return permissionsError(p.Int64())
}

func permissionsError(p int64) error {
	if p&permExtract == 0 {
		return fmt.Errorf("%w (P=%d)", ErrExtractionDenied, p)
	}
	return nil
}

// decrypt checks the permissions of the encrypted document at path, then
// writes a decrypted copy with pdfcpu and returns its bytes.
func decrypt(path string, creds Credentials) ([]byte, error) {
	conf := pdfcpuConfig(creds)

	f, err := os.Open(path) //nolint:gosec // G304: input paths come from discovery
	if err != nil {
		return nil, err
	}
	ctx, err := api.ReadContext(f, conf)
	_ = f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read encrypted PDF: %w", err)
	}
	if ctx.E != nil {
		if err := permissionsError(int64(ctx.E.P)); err != nil {
			return nil, err
		}
	}

	tmp, err := os.CreateTemp("", "decrypted-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	_ = tmp.Close()
	defer func() { _ = os.Remove(tmpName) }()

	if err := api.DecryptFile(path, tmpName, conf); err != nil {
		return nil, fmt.Errorf("failed to decrypt PDF: %w", err)
	}

	data, err := os.ReadFile(tmpName) //nolint:gosec // G304: our own temp file
	if err != nil {
		return nil, fmt.Errorf("failed to read decrypted PDF: %w", err)
	}
	return data, nil
}
