package dto

type LoginURLResponse struct {
	URL string `json:"url"`
}

type UserDTO struct {
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

type LoginResponse struct {
	AccessToken string  `json:"access_token"`
	User        UserDTO `json:"user"`
}
