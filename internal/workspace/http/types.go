package http

type nameReq struct {
	Name string `json:"name"`
}

type createFileReq struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type saveFileReq struct {
	Content *string `json:"content"`
}

type renameFileReq struct {
	NewName string `json:"new_name"`
}
