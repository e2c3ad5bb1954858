package advisory

// domainOrder fixes iteration order; ties in similarity keep this order.
var domainOrder = []string{
	"Property",
	"Immigration",
	"Business",
	"Contract",
	"Employment",
	"Family",
	"Tax",
}

// domainPhrases describe each advisory domain. The phrases of a domain are
// joined with spaces and encoded once into its centroid.
var domainPhrases = map[string][]string{
	"Property": {
		"property purchase sale land building real estate",
		"property title deed registration ownership",
		"property dispute boundary encroachment",
		"property tax assessment valuation",
		"rental lease agreement landlord tenant",
	},
	"Immigration": {
		"visa application work permit residence",
		"citizenship naturalization permanent residence PR",
		"immigration status deportation asylum",
		"travel documents passport verification",
		"immigration compliance sponsorship",
	},
	"Business": {
		"business registration incorporation company formation",
		"business license permit compliance",
		"partnership agreement shareholder rights",
		"business tax GST compliance",
		"business closure dissolution winding up",
	},
	"Contract": {
		"contract drafting review vetting",
		"contract terms conditions obligations",
		"contract breach violation remedy",
		"contract negotiation amendment",
		"contract termination cancellation",
	},
	"Employment": {
		"employment contract offer letter",
		"employment termination resignation severance",
		"employment discrimination harassment",
		"employment benefits salary compensation",
		"employment dispute grievance",
	},
	"Family": {
		"marriage registration divorce separation",
		"child custody guardianship adoption",
		"inheritance will succession estate",
		"family property division settlement",
		"domestic violence protection order",
	},
	"Tax": {
		"tax filing return assessment",
		"tax compliance GST income tax",
		"tax dispute notice appeal",
		"tax planning optimization",
		"tax penalty interest waiver",
	},
}

// Domains returns the advisory domains in their fixed order.
func Domains() []string {
	return append([]string(nil), domainOrder...)
}

// PhrasesFor returns the descriptive phrases of domain, or nil when the
// domain is unknown.
func PhrasesFor(domain string) []string {
	p, ok := domainPhrases[domain]
	if !ok {
		return nil
	}
	return append([]string(nil), p...)
}

// IsDomain reports whether domain is one of the advisory domains.
func IsDomain(domain string) bool {
	_, ok := domainPhrases[domain]
	return ok
}
