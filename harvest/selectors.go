package harvest

// Selectors are the site's CSS hooks. The site ships no stable IDs, so
// everything is keyed by presentation class names; when a redesign moves
// them, only this block (or its YAML override) changes.
type Selectors struct {
	// Login page. The site serves one of two form layouts; the legacy
	// layout is tried first and its absence selects the fallback.
	AcceptCookies    string `yaml:"accept_cookies"`
	LoginUsername    string `yaml:"login_username"`
	LoginPassword    string `yaml:"login_password"`
	LoginSubmit      string `yaml:"login_submit"`
	LoginAltUsername string `yaml:"login_alt_username"`
	LoginAltPassword string `yaml:"login_alt_password"`
	LoginAltSubmit   string `yaml:"login_alt_submit"`
	LoginError       string `yaml:"login_error"`

	// Subject discovery feed.
	SubjectCard     string `yaml:"subject_card"`
	SubjectCardAttr string `yaml:"subject_card_attr"`
	FeedEmpty       string `yaml:"feed_empty"`
	FeedError       string `yaml:"feed_error"`

	// Question list and category filters.
	QuestionItem     string `yaml:"question_item"`
	QuestionTitle    string `yaml:"question_title"`
	FiltersBar       string `yaml:"filters_bar"`
	FilterIcon       string `yaml:"filter_icon"` // suffixed with the category name
	SelfviewMore     string `yaml:"selfview_more"`
	AnswerNextButton string `yaml:"answer_next_button"`

	// Question detail overlay (read and write).
	Overlay            string `yaml:"overlay"`
	OverlayTitle       string `yaml:"overlay_title"`
	OwnAnswerGroup     string `yaml:"own_answer_group"`
	OwnAnswerButton    string `yaml:"own_answer_button"`
	AcceptGroup        string `yaml:"accept_group"`
	AcceptWriteGroup   string `yaml:"accept_write_group"`
	ImportanceGroup    string `yaml:"importance_group"`
	ImportanceWriteGrp string `yaml:"importance_write_group"`
	SelectedSuffix     string `yaml:"selected_suffix"`
	OverlayClose       string `yaml:"overlay_close"`
	OverlaySubmit      string `yaml:"overlay_submit"`

	// Subject profile page.
	EssaysExpander string `yaml:"essays_expander"`
	ProfileThumb   string `yaml:"profile_thumb"`
	ProfileEssays  string `yaml:"profile_essays"`

	// Onboarding question conversation.
	ConvoText     string `yaml:"convo_text"`
	ConvoAnswers  string `yaml:"convo_answers"`
	ConvoTheirs   string `yaml:"convo_theirs"`
	ConvoContinue string `yaml:"convo_continue"`
	ConvoProgress string `yaml:"convo_progress"`
}

func defaultSelectors() Selectors {
	return Selectors{
		AcceptCookies:    ".accept-cookies-button",
		LoginUsername:    ".login-username",
		LoginPassword:    ".login-password",
		LoginSubmit:      ".login-actions-button",
		LoginAltUsername: `input[name="username"]`,
		LoginAltPassword: `input[name="password"]`,
		LoginAltSubmit:   ".login2017-actions-button",
		LoginError:       ".login-error",

		SubjectCard:     ".usercard-thumb",
		SubjectCardAttr: "data-username",
		FeedEmpty:       ".blank-state-wrapper",
		FeedError:       ".error-state-wrapper",

		QuestionItem:     ".profile-question",
		QuestionTitle:    "h3",
		FiltersBar:       ".profile-questions-filters",
		FilterIcon:       ".profile-questions-filter-icon--",
		SelfviewMore:     ".profile-selfview-questions-more",
		AnswerNextButton: ".profile-questions-next-actions-button--answer",

		Overlay:            ".questionspage",
		OverlayTitle:       "h1",
		OwnAnswerGroup:     ".pickonebutton-buttons",
		OwnAnswerButton:    ".pickonebutton-button",
		AcceptGroup:        ".pickmanybuttons",
		AcceptWriteGroup:   ".pickmanybuttons-buttons",
		ImportanceGroup:    ".importance-pickonebutton",
		ImportanceWriteGrp: ".importance-pickonebutton-buttons",
		SelectedSuffix:     "--selected",
		OverlayClose:       ".reactmodal-header-close",
		OverlaySubmit:      ".questionspage-buttons-button--answer",

		EssaysExpander: ".profile-essays-expander",
		ProfileThumb:   ".profile-thumb",
		ProfileEssays:  ".profile-essays",

		ConvoText:     ".convoanswers-text",
		ConvoAnswers:  ".convoanswers-answers",
		ConvoTheirs:   ".convoanswers--theirs",
		ConvoContinue: ".convoquestion-continue",
		ConvoProgress: ".obqconvo-progress-text",
	}
}

// merge fills empty fields from defaults, so YAML overrides stay sparse.
func (s *Selectors) merge(d Selectors) {
	if s.AcceptCookies == "" {
		s.AcceptCookies = d.AcceptCookies
	}
	if s.LoginUsername == "" {
		s.LoginUsername = d.LoginUsername
	}
	if s.LoginPassword == "" {
		s.LoginPassword = d.LoginPassword
	}
	if s.LoginSubmit == "" {
		s.LoginSubmit = d.LoginSubmit
	}
	if s.LoginAltUsername == "" {
		s.LoginAltUsername = d.LoginAltUsername
	}
	if s.LoginAltPassword == "" {
		s.LoginAltPassword = d.LoginAltPassword
	}
	if s.LoginAltSubmit == "" {
		s.LoginAltSubmit = d.LoginAltSubmit
	}
	if s.LoginError == "" {
		s.LoginError = d.LoginError
	}
	if s.SubjectCard == "" {
		s.SubjectCard = d.SubjectCard
	}
	if s.SubjectCardAttr == "" {
		s.SubjectCardAttr = d.SubjectCardAttr
	}
	if s.FeedEmpty == "" {
		s.FeedEmpty = d.FeedEmpty
	}
	if s.FeedError == "" {
		s.FeedError = d.FeedError
	}
	if s.QuestionItem == "" {
		s.QuestionItem = d.QuestionItem
	}
	if s.QuestionTitle == "" {
		s.QuestionTitle = d.QuestionTitle
	}
	if s.FiltersBar == "" {
		s.FiltersBar = d.FiltersBar
	}
	if s.FilterIcon == "" {
		s.FilterIcon = d.FilterIcon
	}
	if s.SelfviewMore == "" {
		s.SelfviewMore = d.SelfviewMore
	}
	if s.AnswerNextButton == "" {
		s.AnswerNextButton = d.AnswerNextButton
	}
	if s.Overlay == "" {
		s.Overlay = d.Overlay
	}
	if s.OverlayTitle == "" {
		s.OverlayTitle = d.OverlayTitle
	}
	if s.OwnAnswerGroup == "" {
		s.OwnAnswerGroup = d.OwnAnswerGroup
	}
	if s.OwnAnswerButton == "" {
		s.OwnAnswerButton = d.OwnAnswerButton
	}
	if s.AcceptGroup == "" {
		s.AcceptGroup = d.AcceptGroup
	}
	if s.AcceptWriteGroup == "" {
		s.AcceptWriteGroup = d.AcceptWriteGroup
	}
	if s.ImportanceGroup == "" {
		s.ImportanceGroup = d.ImportanceGroup
	}
	if s.ImportanceWriteGrp == "" {
		s.ImportanceWriteGrp = d.ImportanceWriteGrp
	}
	if s.SelectedSuffix == "" {
		s.SelectedSuffix = d.SelectedSuffix
	}
	if s.OverlayClose == "" {
		s.OverlayClose = d.OverlayClose
	}
	if s.OverlaySubmit == "" {
		s.OverlaySubmit = d.OverlaySubmit
	}
	if s.EssaysExpander == "" {
		s.EssaysExpander = d.EssaysExpander
	}
	if s.ProfileThumb == "" {
		s.ProfileThumb = d.ProfileThumb
	}
	if s.ProfileEssays == "" {
		s.ProfileEssays = d.ProfileEssays
	}
	if s.ConvoText == "" {
		s.ConvoText = d.ConvoText
	}
	if s.ConvoAnswers == "" {
		s.ConvoAnswers = d.ConvoAnswers
	}
	if s.ConvoTheirs == "" {
		s.ConvoTheirs = d.ConvoTheirs
	}
	if s.ConvoContinue == "" {
		s.ConvoContinue = d.ConvoContinue
	}
	if s.ConvoProgress == "" {
		s.ConvoProgress = d.ConvoProgress
	}
}
