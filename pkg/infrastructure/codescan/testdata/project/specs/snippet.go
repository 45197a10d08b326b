package specs

func Snippet() {}
