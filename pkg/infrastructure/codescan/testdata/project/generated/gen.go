package generated

func Generated() {}
