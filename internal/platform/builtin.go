package platform

import (
	"github.com/jonathan/auto-apply/internal/selector"
)

// Built-in platform identifiers.
const (
	Greenhouse = "greenhouse"
	Lever      = "lever"
	Indeed     = "indeed"
	LinkedIn   = "linkedin"
	Workday    = "workday"
)

// Selectors below are best-effort and will drift as the sites change.

func greenhouseStrategy() *Strategy {
	return &Strategy{
		ID:      Greenhouse,
		Name:    "Greenhouse",
		Aliases: []string{"greenhouse.io", "boards.greenhouse.io", "job-boards.greenhouse.io", "gh"},
		Domains: []string{"greenhouse.io"},
		LoadMarker: selector.CSS(
			"#application-form",
			"#application_form",
			"form#application",
			"#main_fields",
			".application--form",
		),
		ApplyButton: selector.CSS("#apply_button", "button.btn--apply", "a[href='#app']"),
		SplitName:   true,
		Fields: Fields{
			FirstName: selector.CSS("#first_name", "input[name='job_application[first_name]']", "input[autocomplete='given-name']"),
			LastName:  selector.CSS("#last_name", "input[name='job_application[last_name]']", "input[autocomplete='family-name']"),
			Email:     selector.CSS("#email", "input[name='job_application[email]']", "input[type='email']"),
			Phone:     selector.CSS("#phone", "input[name='job_application[phone]']", "input[type='tel']"),
			Resume: selector.CSS(
				"#resume",
				"input[type='file'][name*='resume']",
				"input[type='file'][id*='resume']",
				"input[type='file']",
			),
			CoverLetter: selector.CSS(
				"#cover_letter_text",
				"textarea[name='job_application[cover_letter_text]']",
				"textarea[name*='cover_letter']",
			),
			LinkedIn: selector.Join(
				selector.CSS("input[name*='linkedin' i]", "input[id*='linkedin' i]"),
				selector.XPath("//label[contains(translate(., 'LINKEDIN', 'linkedin'), 'linkedin')]/following::input[1]"),
			),
			Portfolio: selector.Join(
				selector.CSS("input[name*='website' i]", "input[name*='portfolio' i]"),
				selector.XPath("//label[contains(., 'Website') or contains(., 'Portfolio')]/following::input[1]"),
			),
		},
		Submit: selector.Join(
			selector.CSS("#submit_app", "button[type='submit']", "input[type='submit']"),
			selector.XPath("//button[contains(., 'Submit')]"),
		),
		Confirmation: Confirmation{
			Chain:         selector.CSS("#application_confirmation", ".application-confirmation", "[data-qa='confirmation']"),
			URLSubstrings: []string{"confirmation", "thank", "submitted"},
			Sentinel:      "greenhouse_submitted",
		},
	}
}

func leverStrategy() *Strategy {
	return &Strategy{
		ID:      Lever,
		Name:    "Lever",
		Aliases: []string{"lever.co", "jobs.lever.co"},
		Domains: []string{"lever.co"},
		LoadMarker: selector.CSS(
			".application-form",
			"#application-form",
			"form[action$='/apply']",
			".posting-page",
		),
		ApplyButton: selector.CSS(".postings-btn.template-btn-submit", "a.postings-btn[href$='/apply']"),
		Fields: Fields{
			FullName:    selector.CSS("input[name='name']", "input[autocomplete='name']"),
			Email:       selector.CSS("input[name='email']", "input[type='email']"),
			Phone:       selector.CSS("input[name='phone']", "input[type='tel']"),
			Resume:      selector.CSS("#resume-upload-input", "input[name='resume']", "input[type='file']"),
			CoverLetter: selector.CSS("textarea[name='comments']", "#additional-information textarea"),
			LinkedIn:    selector.CSS("input[name='urls[LinkedIn]']", "input[name*='linkedin' i]"),
			Portfolio:   selector.CSS("input[name='urls[Portfolio]']", "input[name='urls[Other]']", "input[name='urls[GitHub]']"),
		},
		Submit: selector.Join(
			selector.CSS("#btn-submit", "button[data-qa='btn-submit']", "button[type='submit']"),
			selector.XPath("//button[contains(., 'Submit application')]"),
		),
		Confirmation: Confirmation{
			Chain:         selector.CSS("[data-qa='msg-submit-success']", ".application-confirmation", ".thanks"),
			URLSubstrings: []string{"/thanks", "confirmation", "submitted"},
			Sentinel:      "lever_submitted",
		},
	}
}

func indeedStrategy() *Strategy {
	return &Strategy{
		ID:      Indeed,
		Name:    "Indeed",
		Aliases: []string{"indeed.com"},
		Domains: []string{"indeed.com", "indeed.co.uk", "indeed.ca"},
		LoadMarker: selector.CSS(
			"#jobsearch-ViewjobPaneWrapper",
			".jobsearch-JobComponent",
			"#viewJobSSRRoot",
			"#ia-container",
		),
		ApplyButton: selector.Join(
			selector.CSS("#indeedApplyButton", "button[id*='indeedApplyButton']", ".jobsearch-IndeedApplyButton-newDesign"),
			selector.XPath("//button[contains(., 'Apply now')]"),
		),
		ApplyRequired: true,
		SplitName:     true,
		Fields: Fields{
			FirstName:   selector.CSS("input[name='firstName']", "input[id*='firstName']"),
			LastName:    selector.CSS("input[name='lastName']", "input[id*='lastName']"),
			Email:       selector.CSS("input[name='email']", "input[type='email']"),
			Phone:       selector.CSS("input[name='phoneNumber']", "input[name='phone']", "input[type='tel']"),
			Resume:      selector.CSS("input[type='file'][accept*='pdf']", "input[type='file']"),
			CoverLetter: selector.CSS("textarea[name='coverletter']", "textarea[id*='coverletter' i]"),
		},
		Submit: selector.Join(
			selector.XPath("//button[contains(., 'Submit your application')]"),
			selector.CSS(".ia-continueButton", "button[type='submit']"),
		),
		AuthWall: AuthWall{
			Chain:         selector.CSS("form[action*='/account/login']", "#ifl-InputFormField-3", "[data-tn-element='auth-page']"),
			URLSubstrings: []string{"secure.indeed.com/auth", "/account/login"},
			Phrases:       []string{"sign in to apply", "create an account or sign in"},
		},
		Confirmation: Confirmation{
			Chain:         selector.CSS(".ia-PostApply-header", "[data-testid='post-apply']", "#ia-PostApply"),
			URLSubstrings: []string{"post-apply", "/applied", "confirmation"},
			Sentinel:      "indeed_submitted",
		},
	}
}

func linkedInStrategy() *Strategy {
	return &Strategy{
		ID:      LinkedIn,
		Name:    "LinkedIn",
		Aliases: []string{"linkedin.com", "li"},
		Domains: []string{"linkedin.com"},
		LoadMarker: selector.CSS(
			".jobs-unified-top-card",
			".top-card-layout",
			".jobs-details",
			"main#main-content",
		),
		ApplyButton:   selector.CSS(".jobs-apply-button", "button[aria-label*='Easy Apply']"),
		ApplyRequired: true,
		SplitName:     true,
		Fields: Fields{
			FirstName: selector.CSS("input[id*='firstName']", "input[name='firstName']"),
			LastName:  selector.CSS("input[id*='lastName']", "input[name='lastName']"),
			Email:     selector.CSS("input[id*='emailAddress']", "input[type='email']"),
			Phone:     selector.CSS("input[id*='phoneNumber']", "input[type='tel']"),
			Resume:    selector.CSS("input[id*='jobs-document-upload']", "input[type='file']"),
			Portfolio: selector.XPath("//label[contains(., 'Website') or contains(., 'Portfolio')]/following::input[1]"),
		},
		Submit: selector.CSS(
			"button[aria-label='Submit application']",
			"footer button.artdeco-button--primary",
		),
		AuthWall: AuthWall{
			Chain:         selector.CSS("form.login__form", "#session_key", ".authwall-join-form", "form[data-id='sign-in-form']"),
			URLSubstrings: []string{"/login", "/authwall", "/checkpoint", "/signup"},
			Phrases:       []string{"sign in to apply", "join now to apply", "join linkedin"},
		},
		Confirmation: Confirmation{
			Chain:         selector.CSS("[data-test-modal-id='post-apply-modal']", ".jpac-modal-header", ".artdeco-inline-feedback--success"),
			URLSubstrings: []string{"post-apply", "/applied"},
			Sentinel:      "linkedin_submitted",
		},
	}
}

func workdayStrategy() *Strategy {
	return &Strategy{
		ID:      Workday,
		Name:    "Workday",
		Aliases: []string{"myworkdayjobs.com", "workday.com", "wd"},
		Domains: []string{"myworkdayjobs.com", "workday.com"},
		LoadMarker: selector.CSS(
			"[data-automation-id='jobPostingHeader']",
			"[data-automation-id='jobPostingPage']",
			"[data-automation-id='applyFlowPage']",
		),
		ApplyButton:   selector.CSS("[data-automation-id='adventureButton']", "a[data-automation-id='applyManually']"),
		ApplyRequired: true,
		SplitName:     true,
		Fields: Fields{
			FirstName: selector.CSS("input[data-automation-id='legalNameSection_firstName']", "input[id*='firstName']"),
			LastName:  selector.CSS("input[data-automation-id='legalNameSection_lastName']", "input[id*='lastName']"),
			Email:     selector.CSS("input[data-automation-id='email']", "input[type='email']"),
			Phone:     selector.CSS("input[data-automation-id='phone-number']", "input[type='tel']"),
			Resume:    selector.CSS("input[data-automation-id='file-upload-input-ref']", "input[type='file']"),
			LinkedIn:  selector.CSS("input[data-automation-id='linkedinQuestion']"),
		},
		Submit: selector.CSS(
			"button[data-automation-id='bottom-navigation-next-button']",
			"button[data-automation-id='pageFooterNextButton']",
		),
		AuthWall: AuthWall{
			Chain: selector.CSS(
				"[data-automation-id='signInContent']",
				"[data-automation-id='createAccountLink']",
				"input[data-automation-id='password']",
			),
			URLSubstrings: []string{"/login", "/signin"},
		},
		Confirmation: Confirmation{
			Chain:         selector.CSS("[data-automation-id='congratulationsPopup']", "[data-automation-id='applicationSubmittedConfirmation']"),
			URLSubstrings: []string{"/thank", "submitted"},
			Sentinel:      "workday_submitted",
		},
	}
}

// Builtin returns fresh copies of the built-in strategies in registration order.
func Builtin() []*Strategy {
	return []*Strategy{
		greenhouseStrategy(),
		leverStrategy(),
		indeedStrategy(),
		linkedInStrategy(),
		workdayStrategy(),
	}
}
