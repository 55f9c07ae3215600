// Package argval classifies argument premises into human values using a
// level model trained by the argval train command with the SVM classifier.
//
// Quick start:
//
//	c, err := argval.New(
//	    argval.WithModelDir("models/"),
//	    argval.WithLevel("2"),
//	    argval.WithValues("data/values.json"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p := c.Classify("we must protect forests and rivers")
//	fmt.Println(p.Values) // [Universalism: nature]
//
// A Classifier holds only plain parameter data and is safe for concurrent
// use. Loading never executes anything stored in the model files.
package argval
