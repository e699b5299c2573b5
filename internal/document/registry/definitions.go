package registry

import "ekyc/internal/document/models"

// Shared field patterns. Matching is case-insensitive.
const (
	patternDate          = `^\d{1,2}[ ./-]?(\d{1,2}|[a-z]{3,9})[ ./-]?\d{2,4}$`
	patternSex           = `^(m|f|x|male|female|laki-laki|perempuan)$`
	patternPassportAU    = `^[a-z]{1,2}\d{7}$`
	patternPassportSG    = `^[a-z]\d{7}[a-z]$`
	patternPassportCN    = `^(e|g|p|s|d)[a-z0-9]?\d{7,8}$`
	patternNRIC          = `^\d{6}-\d{2}-?(?:\d{4})?$`
	patternNIK           = `^\d{16}$`
	patternKHID          = `^\d{9,10}$`
	patternThaiID        = `^\d \d{4} \d{5} \d{2} \d$`
	patternNationalityCN = `^(chinese|中国|中国/chinese)$`
)

func face() models.LandmarkTemplate {
	return models.LandmarkTemplate{Name: "face", Role: models.RoleFace}
}

func signature() models.LandmarkTemplate {
	return models.LandmarkTemplate{Name: "signature", Role: models.RoleSignature}
}

func passportFields(numberPattern string) []models.FieldTemplate {
	return []models.FieldTemplate{
		{Name: "passport_number", Pattern: numberPattern},
		{Name: "surname"},
		{Name: "given_names"},
		{Name: "nationality"},
		{Name: "date_of_birth", Pattern: patternDate},
		{Name: "sex", Pattern: patternSex},
		{Name: "date_of_issue", Pattern: patternDate},
		{Name: "date_of_expiry", Pattern: patternDate},
	}
}

// BuiltinDefinitions returns the default definition table. Model identifiers
// are deployment-specific and are normally replaced through an overrides file.
func BuiltinDefinitions() []models.Definition {
	return []models.Definition{
		{
			Type:          models.DocumentTypeAUPassport,
			DisplayName:   "Australian Passport",
			Capabilities:  models.Capabilities{Liveness: true, FaceExtraction: true, SignatureExtraction: true},
			CustomModelID: "au-passport",
			Landmarks:     []models.LandmarkTemplate{face(), signature()},
			DataFields:    append(passportFields(patternPassportAU), models.FieldTemplate{Name: "place_of_birth"}),
		},
		{
			Type:          models.DocumentTypeSGPassport,
			DisplayName:   "Singapore Passport",
			Capabilities:  models.Capabilities{Liveness: true, FaceExtraction: true, SignatureExtraction: true},
			CustomModelID: "sg-passport",
			Landmarks:     []models.LandmarkTemplate{face(), signature()},
			DataFields:    append(passportFields(patternPassportSG), models.FieldTemplate{Name: "country_of_birth"}),
		},
		{
			Type:          models.DocumentTypeCNPassport,
			DisplayName:   "Chinese Passport",
			Capabilities:  models.Capabilities{Liveness: true, FaceExtraction: true},
			CustomModelID: "cn-passport",
			Landmarks:     []models.LandmarkTemplate{face()},
			DataFields:    append(passportFields(patternPassportCN), models.FieldTemplate{Name: "place_of_birth"}),
		},
		{
			Type:          models.DocumentTypePRCPassport,
			DisplayName:   "PRC Passport",
			Capabilities:  models.Capabilities{Liveness: true, FaceExtraction: true},
			CustomModelID: "prc-passport",
			Landmarks:     []models.LandmarkTemplate{face()},
			DataFields: []models.FieldTemplate{
				{Name: "passport_number", Pattern: patternPassportCN},
				{Name: "name"},
				{Name: "place_of_issue"},
				{Name: "place_of_birth"},
				{Name: "date_of_birth", Pattern: patternDate},
				{Name: "nationality", Pattern: patternNationalityCN},
				{Name: "sex", Pattern: `^(男|女|m|f|男/m|女/f)$`},
			},
			// Bilingual labels are printed as "中文/English" and the OCR often
			// keeps the separator on the value.
			ValueTrimPrefix: "/",
		},
		{
			Type:          models.DocumentTypeMYNRIC,
			DisplayName:   "Malaysian NRIC",
			Capabilities:  models.Capabilities{Liveness: true, FaceExtraction: true},
			CustomModelID: "my-nric",
			Landmarks: []models.LandmarkTemplate{
				face(),
				{
					Name: "mykad_logo",
					Role: models.RoleStructural,
					ExpectedBox: &models.BoundingBox{
						Left: 0.57, Top: 0.02, Width: 0.15, Height: 0.21,
					},
				},
			},
			DataFields: []models.FieldTemplate{
				{Name: "nric", Pattern: patternNRIC},
				{Name: "name"},
				{Name: "address"},
				{Name: "address_postcode", Pattern: `^\d{4,5}$`},
				{Name: "address_state"},
			},
		},
		{
			Type:          models.DocumentTypeIDKTP,
			DisplayName:   "Indonesian KTP",
			Capabilities:  models.Capabilities{Liveness: true, FaceExtraction: true},
			CustomModelID: "id-ktp",
			Landmarks:     []models.LandmarkTemplate{face()},
			DataFields: []models.FieldTemplate{
				{Name: "nik", Pattern: patternNIK},
				{Name: "nama"},
				{Name: "tempat_lahir"},
				{Name: "tanggal_lahir", Pattern: patternDate},
				{Name: "jenis_kelamin", Pattern: patternSex},
				{Name: "alamat"},
				{Name: "rt_rw", Pattern: `^\d{3}/\d{3}$`},
				{Name: "kel_desa"},
				{Name: "kecamatan"},
				{Name: "agama"},
				{Name: "status_perkawinan"},
				{Name: "pekerjaan"},
				{Name: "kewarganegaraan", Pattern: `^(wni|wna)$`},
				{Name: "berlaku_hingga"},
			},
		},
		{
			Type:          models.DocumentTypeKHIC,
			DisplayName:   "Cambodian Identity Card",
			Capabilities:  models.Capabilities{Liveness: true, FaceExtraction: true},
			CustomModelID: "kh-ic",
			Landmarks:     []models.LandmarkTemplate{face()},
			DataFields: []models.FieldTemplate{
				{Name: "id_number", Pattern: patternKHID},
				{Name: "name_kh"},
				{Name: "name_en"},
				{Name: "date_of_birth", Pattern: patternDate},
				{Name: "sex", Pattern: patternSex},
				{Name: "place_of_birth"},
				{Name: "address"},
				{Name: "date_of_expiry", Pattern: patternDate},
			},
		},
		{
			Type:          models.DocumentTypeTHIDFront,
			DisplayName:   "Thai National ID (front)",
			Capabilities:  models.Capabilities{Liveness: true, FaceExtraction: true},
			CustomModelID: "th-id-front",
			Landmarks:     []models.LandmarkTemplate{face()},
			DataFields: []models.FieldTemplate{
				{Name: "identification_number", Pattern: patternThaiID},
				{Name: "full_name_th"},
				{Name: "first_name_en"},
				{Name: "last_name_en"},
				{Name: "date_of_birth", Pattern: `^\d{2}\s[a-z]{3}\.\s\d{4}$`},
				{Name: "address"},
				{Name: "date_of_issue"},
				{Name: "date_of_expiry"},
			},
		},
	}
}

// Default builds the registry from the built-in table.
func Default() *Registry {
	return MustNew(BuiltinDefinitions()...)
}
