package certificate_test

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mynextid/zkcert/certificate"
	"github.com/mynextid/zkcert/zkp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	issueDate  = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	expiryDate = issueDate.AddDate(1, 0, 0)
	photo      = base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10})
)

func testIssuer() certificate.Issuer {
	return certificate.Issuer{
		Name: "MyNextID Trust Services",
		Code: "MNID",
		TIN:  "TIN-0001",
		UID:  "issuer-01",
		Type: "CA",
		Address: certificate.Address{
			Locality: "Ljubljana",
			Pin:      "1000",
			Country:  "SI",
		},
	}
}

func testSubject() certificate.Subject {
	return certificate.Subject{
		SystemID: "subject-42",
		Name:     "Erika Muller",
		Photo:    certificate.Photo{Data: photo},
	}
}

func testProof() *zkp.Proof {
	return &zkp.Proof{Data: []byte{1, 2, 3, 4}, PublicSignals: []string{"21", "1", "2", "2024"}}
}

func TestBuild(t *testing.T) {
	doc, err := certificate.Build(testIssuer(), testSubject(), testProof(), 21, issueDate, expiryDate)
	require.NoError(t, err)

	assert.Equal(t, certificate.TypeAgeVerify, doc.Type)
	assert.Equal(t, certificate.StatusActive, doc.Status)
	assert.Equal(t, "2024-02-01T00:00:00Z", doc.IssueDate)
	assert.Equal(t, certificate.PhotoFormatJPEG, doc.IssuedTo.Person.Photo.Format)
	assert.Equal(t, 21, doc.Data.AgeProof.ClaimedAge)
	assert.Equal(t, zkp.CircuitName, doc.Data.AgeProof.Circuit)
	assert.Len(t, doc.Number, 36)

	other, err := certificate.Build(testIssuer(), testSubject(), testProof(), 21, issueDate, expiryDate)
	require.NoError(t, err)
	assert.NotEqual(t, doc.Number, other.Number, "serial numbers must be unique")

	doc.Number = other.Number
	assert.Equal(t, other, doc, "documents differ only by serial")
}

func TestBuild_Options(t *testing.T) {
	doc, err := certificate.Build(testIssuer(), testSubject(), testProof(), 18, issueDate, expiryDate,
		certificate.WithType("nAgeVerify18"), certificate.WithName("Over 18"))
	require.NoError(t, err)
	assert.Equal(t, "nAgeVerify18", doc.Type)
	assert.Equal(t, "Over 18", doc.Name)
}

func TestBuild_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(i *certificate.Issuer, s *certificate.Subject)
		field  string
	}{
		{"subject id", func(_ *certificate.Issuer, s *certificate.Subject) { s.SystemID = "" }, "IssuedTo/Person@uid"},
		{"subject name", func(_ *certificate.Issuer, s *certificate.Subject) { s.Name = "" }, "IssuedTo/Person@name"},
		{"photo", func(_ *certificate.Issuer, s *certificate.Subject) { s.Photo.Data = "  " }, "IssuedTo/Person/Photo"},
		{"photo not base64", func(_ *certificate.Issuer, s *certificate.Subject) { s.Photo.Data = "not*base64" }, "IssuedTo/Person/Photo"},
		{"issuer name", func(i *certificate.Issuer, _ *certificate.Subject) { i.Name = "" }, "IssuedBy/Organization@name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issuer, subject := testIssuer(), testSubject()
			tt.mutate(&issuer, &subject)

			_, err := certificate.Build(issuer, subject, testProof(), 21, issueDate, expiryDate)
			var dbe *certificate.DocumentBuildError
			require.True(t, errors.As(err, &dbe), "got %v", err)
			assert.Equal(t, tt.field, dbe.Field)
		})
	}

	_, err := certificate.Build(testIssuer(), testSubject(), nil, 21, issueDate, expiryDate)
	assert.Error(t, err)

	_, err = certificate.Build(testIssuer(), testSubject(), testProof(), 21, issueDate, issueDate)
	assert.Error(t, err)
}

func TestMarshal_Layout(t *testing.T) {
	doc, err := certificate.Build(testIssuer(), testSubject(), testProof(), 21, issueDate, expiryDate)
	require.NoError(t, err)

	b, err := doc.Marshal()
	require.NoError(t, err)
	out := string(b)

	assert.True(t, strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, out, `<Organization name="MyNextID Trust Services" code="MNID" tin="TIN-0001" uid="issuer-01" type="CA">`)
	assert.Contains(t, out, `<Address locality="Ljubljana" pin="1000" country="SI"></Address>`)
	assert.Contains(t, out, `<Person uid="subject-42" name="Erika Muller">`)
	assert.Contains(t, out, `<Photo format="jpeg">`+photo+`</Photo>`)
	assert.Contains(t, out, `<AgeProof claimedAge="21" circuit="age-threshold" circuitVersion="1">`)
	assert.Contains(t, out, `<Proof>AQIDBA==</Proof>`)
	assert.Contains(t, out, `<Signal>2024</Signal>`)
}

func TestParse_RoundTrip(t *testing.T) {
	doc, err := certificate.Build(testIssuer(), testSubject(), testProof(), 21, issueDate, expiryDate)
	require.NoError(t, err)

	b, err := doc.Marshal()
	require.NoError(t, err)

	parsed, err := certificate.Parse(b)
	require.NoError(t, err)

	doc.XMLName = parsed.XMLName
	assert.Equal(t, doc, parsed)

	ref, err := parsed.ReferenceDate()
	require.NoError(t, err)
	assert.True(t, ref.Equal(issueDate))

	proof, err := parsed.Proof()
	require.NoError(t, err)
	assert.Equal(t, testProof(), proof)
}

func TestParse_Invalid(t *testing.T) {
	_, err := certificate.Parse([]byte("not xml"))
	var dbe *certificate.DocumentBuildError
	assert.True(t, errors.As(err, &dbe))

	_, err = certificate.Parse([]byte(`<Certificate type="nAgeVerify" number="1"></Certificate>`))
	assert.True(t, errors.As(err, &dbe))
}

func TestNormalizePhoto(t *testing.T) {
	assert.Equal(t, "AAAA", certificate.NormalizePhoto(" data:image/jpeg;base64,AAAA\n"))
	assert.Equal(t, "AAAA", certificate.NormalizePhoto("AAAA"))
}
