package unlock

// Profile is the subset of a user record the reveal policy can expose.
type Profile struct {
	UserID        string
	Alias         string
	Name          string
	Gender        string
	Age           int
	City          string
	Bio           string
	Interests     []string
	PhotoPublicID string
}

// PhotoURLer renders a stored photo at a given obscurity percentage.
type PhotoURLer interface {
	PhotoURL(publicID string, obscurity int) (string, error)
}

type PhotoView struct {
	URL       string `json:"url"`
	Obscurity int    `json:"obscurity"`
}

// View is what a participant is allowed to see of their partner.
type View struct {
	UserID        string     `json:"userId"`
	Alias         string     `json:"alias"`
	Tier          int        `json:"tier"`
	FullyUnlocked bool       `json:"fullyUnlocked"`
	Name          string     `json:"name,omitempty"`
	Gender        string     `json:"gender,omitempty"`
	Age           int        `json:"age,omitempty"`
	City          string     `json:"city,omitempty"`
	Bio           string     `json:"bio,omitempty"`
	Interests     []string   `json:"interests,omitempty"`
	Photo         *PhotoView `json:"photo,omitempty"`
	NextUnlockIn  int64      `json:"nextUnlockIn"`
}

// Project builds the view of p at tier. fullyUnlocked (premium viewer) forces
// the tier-4 view regardless of tier. Photo URLs are produced by urler when
// non-nil; otherwise the public ID is returned as-is.
func Project(p Profile, tier int, fullyUnlocked bool, urler PhotoURLer) View {
	if tier < TierHidden {
		tier = TierHidden
	}
	if tier > MaxTier {
		tier = MaxTier
	}
	effective := tier
	if fullyUnlocked || tier == TierFull {
		effective = TierFull
		fullyUnlocked = true
	}

	v := View{
		UserID:        p.UserID,
		Alias:         p.Alias,
		Tier:          tier,
		FullyUnlocked: fullyUnlocked,
	}

	if effective >= TierBasics {
		v.Age = p.Age
		v.City = p.City
	}
	if effective >= TierPhoto && p.PhotoPublicID != "" {
		o := Obscurity(effective)
		url := p.PhotoPublicID
		if urler != nil {
			if rendered, err := urler.PhotoURL(p.PhotoPublicID, o); err == nil {
				url = rendered
			}
		}
		v.Photo = &PhotoView{URL: url, Obscurity: o}
	}
	if effective >= TierInterests {
		v.Bio = p.Bio
		if len(p.Interests) > 0 {
			v.Interests = append([]string(nil), p.Interests...)
		}
	}
	if effective >= TierFull {
		v.Name = p.Name
		v.Gender = p.Gender
	}
	return v
}

// ProjectAt is Project driven by the match message count.
func ProjectAt(p Profile, messageCount int64, fullyUnlocked bool, urler PhotoURLer) View {
	v := Project(p, Tier(messageCount), fullyUnlocked, urler)
	v.NextUnlockIn = NextThreshold(messageCount)
	return v
}
