package broken

func Oops( {
