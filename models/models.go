package models

// All lists every model for auto-migration.
func All() []interface{} {
	return []interface{}{
		&User{},
		&CheckIn{},
		&TokenTransaction{},
		&Journal{},
		&Recommendation{},
		&Reward{},
		&Summary{},
		&CommunityGroup{},
		&CommunityMember{},
		&CommunityMessage{},
		&UploadedFile{},
	}
}
